package main

import (
	"fmt"

	_ "github.com/placeloop/go-common/cache"
	_ "github.com/placeloop/go-common/collection"
	_ "github.com/placeloop/go-common/config"
	_ "github.com/placeloop/go-common/env"
	_ "github.com/placeloop/go-common/kv"
	_ "github.com/placeloop/go-common/location"
	_ "github.com/placeloop/go-common/logger"
	_ "github.com/placeloop/go-common/place"
	_ "github.com/placeloop/go-common/provider"
	_ "github.com/placeloop/go-common/pubsub"
	_ "github.com/placeloop/go-common/resilience"
	_ "github.com/placeloop/go-common/slice"
	_ "github.com/placeloop/go-common/store"
	_ "github.com/placeloop/go-common/string"
	_ "github.com/placeloop/go-common/sys"
	_ "github.com/placeloop/go-common/telemetry"
	_ "github.com/placeloop/go-common/tui"
)

func main() {
	fmt.Println("Hi")
}
