// Public domain.

package main

import "github.com/jpssrocha/gaiaget/internal/gprog"

func main() {
	gprog.Main()
}
