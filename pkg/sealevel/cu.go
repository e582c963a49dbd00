package sealevel

const (
	CUCreateProgramAddressUnits           = 1500
	CUInvokeUnits                         = 1000
	CUSystemProgramDefaultComputeUnits    = 150
	CUTokenProgramDefaultComputeUnits     = 2000
	CUAssociatedTokenDefaultComputeUnits  = 1500
	CUStakeFlowProgramDefaultComputeUnits = 3000
	CUStakeFlowEventEmitUnits             = 100
)
