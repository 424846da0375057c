package drv

import "fmt"

// Code is a raw return code from the vendor driver.  Every driver call
// produces one.
type Code uint

// the codes the acquisition layer consults by name.  The full table is
// in codeNames.
const (
	// CodeSuccess is returned when a call completes normally
	CodeSuccess Code = 20002

	// CodeNoNewData is returned by the wait and retrieval calls when no
	// frame arrived, including when the wait timed out or was aborted
	CodeNoNewData Code = 20024

	// CodeTempOff means the cooler is off
	CodeTempOff Code = 20034

	// CodeTempNotStabilized means the set point was reached but the
	// sensor has not settled there yet
	CodeTempNotStabilized Code = 20035

	// CodeTempStabilized means the sensor is stable at the set point
	CodeTempStabilized Code = 20036

	// CodeTempNotReached means the sensor has not reached the set point
	CodeTempNotReached Code = 20037

	// CodeTempDrift means the sensor wandered from the set point
	CodeTempDrift Code = 20040

	// CodeGeneralErrors is returned by range queries for an invalid series
	CodeGeneralErrors Code = 20049

	// CodeP1Invalid .. CodeP6Invalid flag a bad call parameter by position
	CodeP1Invalid Code = 20066
	CodeP2Invalid Code = 20067
	CodeP3Invalid Code = 20068
	CodeP4Invalid Code = 20069
	CodeP5Invalid Code = 20076
	CodeP6Invalid Code = 20077

	// CodeInvalidMode flags a mode not available on this hardware
	CodeInvalidMode Code = 20078

	// CodeAcquiring means the request could not run because an
	// acquisition is in progress
	CodeAcquiring Code = 20072

	// CodeIdle means the device was idle; unexpected during operations
	// that should hold it active
	CodeIdle Code = 20073

	// CodeTempCycle means the device is running a temperature cycle
	CodeTempCycle Code = 20074

	// CodeNotInitialized means Initialize has not succeeded yet
	CodeNotInitialized Code = 20075

	// CodeNotSupported flags a feature the hardware lacks
	CodeNotSupported Code = 20091
)

// codeNames maps codes to their names in the SDK manual
var codeNames = map[Code]string{
	20001: "DRV_ERROR_CODES",
	20002: "DRV_SUCCESS",
	20003: "DRV_VXD_NOT_INSTALLED",
	20004: "DRV_ERROR_SCAN",
	20005: "DRV_ERROR_CHECKSUM",
	20006: "DRV_ERROR_FILELOAD",
	20007: "DRV_UNKNOWN_FUNCTION",
	20008: "DRV_ERROR_VXD_INIT",
	20009: "DRV_ERROR_ADDRESS",
	20010: "DRV_ERROR_PAGE_LOCK",
	20011: "DRV_ERROR_PAGE_UNLOCK",
	20012: "DRV_ERROR_BOARDTEST",
	20013: "DRV_ERROR_ACK",
	20014: "DRV_ERROR_UP_FIFO",
	20015: "DRV_ERROR_PATTERN",
	// no 20016
	20017: "DRV_ACQUISITION_ERRORS",
	20018: "DRV_ACQ_BUFFER",
	20019: "DRV_ACQ_DOWNFIFO_FULL",
	20020: "DRV_PROC_UNKNOWN_INSTRUCTION",
	20021: "DRV_ILLEGAL_OP_CODE",
	20022: "DRV_KINETIC_TIME_NOT_MET",
	20023: "DRV_ACCUM_TIME_NOT_MET",
	20024: "DRV_NO_NEW_DATA",
	// no 20025
	20026: "DRV_SPOOLERROR",
	// no 20027-20032
	20033: "DRV_TEMPERATURE_CODES",
	20034: "DRV_TEMPERATURE_OFF",
	20035: "DRV_TEMPERATURE_NOT_STABILIZED",
	20036: "DRV_TEMPERATURE_STABILIZED",
	20037: "DRV_TEMPERATURE_NOT_REACHED",
	20038: "DRV_TEMPERATURE_OUT_RANGE",
	20039: "DRV_TEMPERATURE_NOT_SUPPORTED",
	20040: "DRV_TEMPERATURE_DRIFT",
	// no 20041-20048
	20049: "DRV_GENERAL_ERRORS",
	20050: "DRV_INVALID_AUX",
	20051: "DRV_COF_NOTLOADED",
	20052: "DRV_FPGAPROG",
	20053: "DRV_FLEXERROR",
	20054: "DRV_GPIBERROR",
	// no 20055-20063
	20064: "DRV_DATATYPE",
	20065: "DRV_DRIVER_ERRORS",
	20066: "DRV_P1INVALID",
	20067: "DRV_P2INVALID",
	20068: "DRV_P3INVALID",
	20069: "DRV_P4INVALID",
	20070: "DRV_INIERROR",
	20071: "DRV_COFERROR",
	20072: "DRV_ACQUIRING",
	20073: "DRV_IDLE",
	20074: "DRV_TEMPCYCLE",
	20075: "DRV_NOT_INITIALIZED",
	20076: "DRV_P5INVALID",
	20077: "DRV_P6INVALID",
	20078: "DRV_INVALID_MODE",
	20079: "DRV_INVALID_FILTER",
	20080: "DRV_I2CERRORS",
	20081: "DRV_DRV_I2CDEVNOTFOUND",
	20082: "DRV_I2CTIMEOUT",
	20083: "DRV_P7INVALID",
	// no 20084-20088
	20089: "DRV_USBERROR",
	20090: "DRV_IOCERROR",
	20091: "DRV_NOT_SUPPORTED",
	// no 20092
	20093: "DRV_USB_INTERRUPT_ENDPOINT_ERROR",
	20094: "DRV_RANDOM_TRACK_ERROR",
	20095: "DRV_INVALID_TRIGGER_MODE",
	20096: "DRV_LOAD_FIRMWARE_ERROR",
	20097: "DRV_DIVIDE_BY_ZERO_ERROR",
	20098: "DRV_INVALID_RINGEXPOSURES",
	20099: "DRV_BINNING_ERROR",
	20100: "DRV_INVALID_AMPLIFIER",
	// no 20101-20114 -- sort of. the 100s continue later in the manual
	20115: "DRV_ERROR_MAP",
	20116: "DRV_ERROR_UNMAP",
	20117: "DRV_ERROR_MDL",
	20118: "DRV_ERROR_UNMDL",
	20119: "DRV_ERROR_BUFFSIZE",
	// no 20120
	20121: "DRV_ERROR_NOHANDLE",
	// no 20122-20129
	20130: "DRV_GATING_NOT_AVAILABLE",
	20131: "DRV_FPGA_VOLTAGE_ERROR",
	20990: "DRV_ERROR_NOCAMERA",
	20991: "DRV_NOT_SUPPORTED",
	20992: "DRV_NOT_AVAILABLE",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return fmt.Sprintf("%d - %s", uint(c), s)
	}
	return fmt.Sprintf("%d - UNKNOWN_ERROR_CODE", uint(c))
}

// DRVError represents a fatal driver code and has nice formatting
type DRVError Code

func (e DRVError) Error() string {
	return "andor: " + Code(e).String()
}
