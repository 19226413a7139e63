// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// AlgorithmVersion identifies the detection algorithm revision. It is stamped
// on every detection so downstream products can tell which rules produced it.
const AlgorithmVersion = "1.0.0"

// Algorithm is the algorithm identifier reported with each detection
const Algorithm = "ccd:" + AlgorithmVersion

// Version holds the application version information
const Version = AlgorithmVersion + "-" + runtime.GOOS + "/" + runtime.GOARCH
