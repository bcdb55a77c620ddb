package edge

// The edge binary runs without cgo.
import _ "modernc.org/sqlite"
