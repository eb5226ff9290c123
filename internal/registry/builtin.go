package registry

// Implementation names shared across kinds.
const (
	ImplPure         = "pure"       // generic fallback, always available
	ImplMKL          = "MKL"        // Intel vendor math library
	ImplOpenBLAS     = "OpenBLAS"   // open vendor math library
	ImplCuBLAS       = "cuBLAS"     // vendor GPU library
	ImplCUB          = "CUB"        // vendor GPU primitive library
	ImplDeviceKernel = "gpu-device" // whole-device-resident expansion
)

// Default returns a registry populated with the built-in library-node kinds.
func Default() *Registry {
	r := New()
	r.RegisterKind(&Kind{
		Name:            "matmul",
		Implementations: []string{ImplPure, ImplMKL, ImplOpenBLAS, ImplCuBLAS},
	})
	r.RegisterKind(&Kind{
		Name:            "dot",
		Implementations: []string{ImplPure, ImplMKL, ImplOpenBLAS, ImplCuBLAS},
	})
	r.RegisterKind(&Kind{
		Name:            "reduce",
		Implementations: []string{ImplPure, ImplCUB, ImplDeviceKernel},
		DeviceResident:  ImplDeviceKernel,
	})
	r.RegisterKind(&Kind{
		Name:            "transpose",
		Implementations: []string{ImplPure, ImplCuBLAS},
	})
	return r
}
