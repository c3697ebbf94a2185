package main

import "github.com/92Bilal26/ai-junior-bilal/services/dashboard/cli"

func main() {
	cli.Execute()
}
