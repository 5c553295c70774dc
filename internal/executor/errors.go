package executor

import "errors"

// ErrTargetNotRegistered indicates the requested target version is not in the registry.
var ErrTargetNotRegistered = errors.New("target version not registered")

// ErrUnregisteredVersion indicates an applied version has no registered
// migration definition, so it cannot be rolled back.
var ErrUnregisteredVersion = errors.New("cannot roll back unregistered version")
