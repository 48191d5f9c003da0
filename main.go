package main

import (
	surveysApp "surveys/internal/app"
)

func main() {
	surveysApp.ServeMCP()
}
