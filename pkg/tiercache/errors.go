package tiercache

import "errors"

// ErrInvalidConfig is returned when a cache is constructed with a malformed
// configuration. It is the only construction-time failure.
var ErrInvalidConfig = errors.New("invalid cache configuration")

// ErrStorageAccess classifies a session or persistent tier failure. It is
// recovered internally: reads degrade to a miss, writes to best effort.
var ErrStorageAccess = errors.New("storage access failed")

// ErrCompression classifies a compression failure. It is recovered
// internally by storing the value uncompressed.
var ErrCompression = errors.New("compression failed")

// ErrCorruptEntry classifies a stored entry that fails to decode. The entry
// is treated as absent and purged opportunistically.
var ErrCorruptEntry = errors.New("corrupt cache entry")
