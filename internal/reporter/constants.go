package reporter

// Flag and mode constants from the kernel ABI.
const (
	oRDONLY = 0
	oWRONLY = 00000001
	oRDWR   = 00000002
	oCREAT  = 00000100
	oTRUNC  = 00001000

	atFDCWD = -100

	sigCHLD    = 17
	cloneVM    = 0x00000100
	cloneVFORK = 0x00004000

	sIFIFO  = 0010000
	sIFREG  = 0100000
	sIFSOCK = 0140000
)

// Instrumented kill() opcodes marking loop units and memory accesses.
const (
	beepUnitBegin     = -100
	beepUnitEnd       = -101
	beepReadHighBits  = -200
	beepReadLowBits   = -201
	beepWriteHighBits = -300
	beepWriteLowBits  = -301
)
