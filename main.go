package main

import "github.com/shouni/go-json-fetch/cmd"

// main は CLI を起動します。エラー時の終了処理は clibase.Execute が行います。
func main() {
	cmd.Execute()
}
