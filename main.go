package main

import "github.com/ValentinKolb/dDispatch/cmd"

func main() {
	cmd.Execute()
}
