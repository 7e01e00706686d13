package main

import "babywallet/internal/walletctl"

func main() {
	walletctl.Execute()
}
