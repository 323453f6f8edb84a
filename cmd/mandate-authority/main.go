// Command mandate-authority runs the mandate authority service.
package main

import "github.com/mandate-authority/mandate-authority/cmd/mandate-authority/cmd"

func main() {
	cmd.Execute()
}
