package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/salonlink/internal/app"
)

func main() {
	// ログは標準エラー出力、クライアントコマンドの結果は標準出力に出す
	if err := app.Run(os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "salonlink: %v\n", err)
		os.Exit(1)
	}
}
