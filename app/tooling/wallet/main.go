package main

import "github.com/trong0x/vanledger/app/tooling/wallet/cmd"

func main() {
	cmd.Execute()
}
