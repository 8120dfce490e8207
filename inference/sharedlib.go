package inference

import "runtime"

// SharedLibPath returns the default per-platform location of the ONNX
// Runtime shared library under third_party/.
func SharedLibPath() string {
	if runtime.GOOS == "windows" && runtime.GOARCH == "amd64" {
		return "./third_party/onnxruntime.dll"
	}
	if runtime.GOOS == "darwin" {
		return "./third_party/libonnxruntime.dylib"
	}
	if runtime.GOOS == "linux" {
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
	panic("no onnxruntime library path known for this platform")
}
