package extism

import "errors"

var (
	// ErrContentNil is raised for empty WASM content.
	ErrContentNil = errors.New("wasm content is empty")

	// ErrCompileFailed wraps Extism plugin compilation failures.
	ErrCompileFailed = errors.New("failed to compile wasm plugin")

	// ErrEntryPointMissing is raised when the compiled plugin does not
	// export the configured entry point function.
	ErrEntryPointMissing = errors.New("wasm plugin does not export entry point")

	// ErrNonZeroExit is raised when the plugin's entry point returns a
	// non-zero exit code.
	ErrNonZeroExit = errors.New("wasm plugin exited with non-zero code")
)
