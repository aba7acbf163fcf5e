package main

import (
	"github.com/m-silliman/svc-queue-monitor/internal/runtime"
)

func main() {
	runtime.New().Run()
}
