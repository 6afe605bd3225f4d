package main

import (
	"fmt"

	"github.com/nimblechat/presence-delivery-service/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
