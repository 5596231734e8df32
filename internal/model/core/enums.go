package core

import "fmt"

// Aspiration describes how the engine breathes.
type Aspiration uint8

const (
	AspirationNatural Aspiration = iota
	AspirationTurbo
	AspirationSupercharged
)

// String returns the config-file spelling of the aspiration type.
func (a Aspiration) String() string {
	switch a {
	case AspirationNatural:
		return "natural"
	case AspirationTurbo:
		return "turbo"
	case AspirationSupercharged:
		return "supercharged"
	default:
		return fmt.Sprintf("aspiration(%d)", uint8(a))
	}
}

// ParseAspiration parses a config-file aspiration string.
func ParseAspiration(s string) (Aspiration, error) {
	switch s {
	case "", "natural", "na":
		return AspirationNatural, nil
	case "turbo":
		return AspirationTurbo, nil
	case "supercharged":
		return AspirationSupercharged, nil
	default:
		return AspirationNatural, fmt.Errorf("unknown aspiration type %q", s)
	}
}

// TransmissionType selects the gear-selection strategy.
type TransmissionType uint8

const (
	TransmissionManual TransmissionType = iota
	TransmissionAutomatic
	TransmissionCVT
)

func (t TransmissionType) String() string {
	switch t {
	case TransmissionManual:
		return "manual"
	case TransmissionAutomatic:
		return "automatic"
	case TransmissionCVT:
		return "cvt"
	default:
		return fmt.Sprintf("transmission(%d)", uint8(t))
	}
}

// ParseTransmissionType parses a config-file transmission type string.
func ParseTransmissionType(s string) (TransmissionType, error) {
	switch s {
	case "manual":
		return TransmissionManual, nil
	case "", "automatic", "auto":
		return TransmissionAutomatic, nil
	case "cvt":
		return TransmissionCVT, nil
	default:
		return TransmissionAutomatic, fmt.Errorf("unknown transmission type %q", s)
	}
}

// DrivetrainLayout selects which axle receives engine force.
type DrivetrainLayout uint8

const (
	LayoutRearDrive DrivetrainLayout = iota
	LayoutFrontDrive
	LayoutAllDrive
)

func (l DrivetrainLayout) String() string {
	switch l {
	case LayoutRearDrive:
		return "rwd"
	case LayoutFrontDrive:
		return "fwd"
	case LayoutAllDrive:
		return "awd"
	default:
		return fmt.Sprintf("layout(%d)", uint8(l))
	}
}

// ParseDrivetrainLayout parses a config-file layout string.
func ParseDrivetrainLayout(s string) (DrivetrainLayout, error) {
	switch s {
	case "", "rwd", "rear":
		return LayoutRearDrive, nil
	case "fwd", "front":
		return LayoutFrontDrive, nil
	case "awd", "all", "4wd":
		return LayoutAllDrive, nil
	default:
		return LayoutRearDrive, fmt.Errorf("unknown drivetrain layout %q", s)
	}
}

// ShiftMode is the transmission selector position.
type ShiftMode uint8

const (
	ModePark ShiftMode = iota
	ModeReverse
	ModeNeutral
	ModeDrive
	ModeSport
	ModeManual
)

func (m ShiftMode) String() string {
	switch m {
	case ModePark:
		return "park"
	case ModeReverse:
		return "reverse"
	case ModeNeutral:
		return "neutral"
	case ModeDrive:
		return "drive"
	case ModeSport:
		return "sport"
	case ModeManual:
		return "manual"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseShiftMode parses a scenario/script shift mode string.
func ParseShiftMode(s string) (ShiftMode, error) {
	switch s {
	case "park", "p":
		return ModePark, nil
	case "reverse", "r":
		return ModeReverse, nil
	case "neutral", "n":
		return ModeNeutral, nil
	case "drive", "d":
		return ModeDrive, nil
	case "sport", "s":
		return ModeSport, nil
	case "manual", "m":
		return ModeManual, nil
	default:
		return ModeNeutral, fmt.Errorf("unknown shift mode %q", s)
	}
}

// SurfaceType is the road surface hint passed with driver input.
type SurfaceType uint8

const (
	SurfaceTarmac SurfaceType = iota
	SurfaceGravel
	SurfaceWet
	SurfaceIce
)

func (s SurfaceType) String() string {
	switch s {
	case SurfaceTarmac:
		return "tarmac"
	case SurfaceGravel:
		return "gravel"
	case SurfaceWet:
		return "wet"
	case SurfaceIce:
		return "ice"
	default:
		return fmt.Sprintf("surface(%d)", uint8(s))
	}
}

// ParseSurfaceType parses a scenario/script surface string.
func ParseSurfaceType(s string) (SurfaceType, error) {
	switch s {
	case "", "tarmac", "road":
		return SurfaceTarmac, nil
	case "gravel", "dirt":
		return SurfaceGravel, nil
	case "wet":
		return SurfaceWet, nil
	case "ice", "snow":
		return SurfaceIce, nil
	default:
		return SurfaceTarmac, fmt.Errorf("unknown surface type %q", s)
	}
}

// Grip returns the nominal friction multiplier for the surface.
func (s SurfaceType) Grip() float64 {
	switch s {
	case SurfaceGravel:
		return 0.7
	case SurfaceWet:
		return 0.6
	case SurfaceIce:
		return 0.25
	default:
		return 1.0
	}
}

// ShiftRequest is a discrete gear change command from the driver.
type ShiftRequest int8

const (
	ShiftNone ShiftRequest = 0
	ShiftUp   ShiftRequest = 1
	ShiftDown ShiftRequest = -1
)

// ShiftCause records why a gear change happened.
type ShiftCause uint8

const (
	ShiftCauseManual ShiftCause = iota
	ShiftCauseAuto
	ShiftCauseKickdown
	ShiftCauseModeChange
)

func (c ShiftCause) String() string {
	switch c {
	case ShiftCauseManual:
		return "manual"
	case ShiftCauseAuto:
		return "auto"
	case ShiftCauseKickdown:
		return "kickdown"
	case ShiftCauseModeChange:
		return "mode_change"
	default:
		return fmt.Sprintf("cause(%d)", uint8(c))
	}
}
