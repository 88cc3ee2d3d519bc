/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/infectwatch/apiserver/cmd"

func main() {
	cmd.Execute()
}
