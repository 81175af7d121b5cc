package config

import "os"

// lookupEnv is swapped in tests.
var lookupEnv = os.Getenv
