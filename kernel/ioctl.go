package kernel

// Linux ioctl request encoding (asm-generic/ioctl.h).
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

// IOCTLBase is DRM_IOCTL_BASE.
const IOCTLBase = 'd'

// CommandBase is DRM_COMMAND_BASE, the first driver-private number.
const CommandBase = 0x40

func ioc(dir, nr, size uint32) uint32 {
	return dir<<iocDirShift | size<<iocSizeShift | IOCTLBase<<iocTypeShift | nr<<iocNRShift
}

// IOW encodes a write-only DRM request.
func IOW(nr, size uint32) uint32 { return ioc(iocWrite, nr, size) }

// IOWR encodes a read-write DRM request.
func IOWR(nr, size uint32) uint32 { return ioc(iocRead|iocWrite, nr, size) }

// Sizes of the fixed structures carried by the requests below.
const (
	SetClientCapSize     = 16
	PrimeHandleSize      = 12
	GetResourcesSize     = 64
	GetEncoderSize       = 20
	GetConnectorSize     = 80
	GetPropertySize      = 64
	GetBlobSize          = 16
	CreateDumbSize       = 32
	MapDumbSize          = 16
	DestroyDumbSize      = 4
	FBCmd2Size           = 104
	ObjGetPropertiesSize = 32
	AtomicSize           = 56
)

// DRM request numbers used by the writeback display.
var (
	IOCTLSetClientCap         = IOW(0x0D, SetClientCapSize)
	IOCTLPrimeHandleToFD      = IOWR(0x2D, PrimeHandleSize)
	IOCTLPrimeFDToHandle      = IOWR(0x2E, PrimeHandleSize)
	IOCTLModeGetResources     = IOWR(0xA0, GetResourcesSize)
	IOCTLModeGetEncoder       = IOWR(0xA6, GetEncoderSize)
	IOCTLModeGetConnector     = IOWR(0xA7, GetConnectorSize)
	IOCTLModeGetProperty      = IOWR(0xAA, GetPropertySize)
	IOCTLModeGetPropBlob      = IOWR(0xAC, GetBlobSize)
	IOCTLModeRmFB             = IOWR(0xAF, 4)
	IOCTLModeCreateDumb       = IOWR(0xB2, CreateDumbSize)
	IOCTLModeMapDumb          = IOWR(0xB3, MapDumbSize)
	IOCTLModeDestroyDumb      = IOWR(0xB4, DestroyDumbSize)
	IOCTLModeAddFB2           = IOWR(0xB8, FBCmd2Size)
	IOCTLModeObjGetProperties = IOWR(0xB9, ObjGetPropertiesSize)
	IOCTLModeAtomic           = IOWR(0xBC, AtomicSize)

	// IOCTLSDEWBConfig is DRM_IOCTL_SDE_WB_CONFIG.
	IOCTLSDEWBConfig = IOW(CommandBase+0x40, WBConfigSize)
)

// Client capabilities.
const (
	ClientCapUniversalPlanes     = 2
	ClientCapAtomic              = 3
	ClientCapWritebackConnectors = 5
)

// Object types.
const (
	ObjectCRTC      = 0xcccccccc
	ObjectConnector = 0xc0c0c0c0
)

// Atomic request flags.
const (
	AtomicTestOnly     = 0x0100
	AtomicNonBlock     = 0x0200
	AtomicAllowModeset = 0x0400
)

// Connector connection states.
const (
	Connected         = 1
	Disconnected      = 2
	UnknownConnection = 3
)

// PrimeFlagCloexec is DRM_CLOEXEC for PRIME exports.
const PrimeFlagCloexec = 0x80000
