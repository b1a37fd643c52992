package main

import "github.com/vibast-solutions/ms-go-payment-reconciler/cmd"

func main() {
	cmd.Execute()
}
