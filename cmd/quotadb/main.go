package main

import "github.com/quotadb/quotadb/internal/cli"

func main() {
	cli.Execute()
}
