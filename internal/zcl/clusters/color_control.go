package clusters

import "zigbee-rgb-light/internal/zcl"

// Color Control cluster attribute IDs.
const (
	ColorControlID uint16 = 0x0300
	AttrCurrentX   uint16 = 0x0003
	AttrCurrentY   uint16 = 0x0004
	AttrColorMode  uint16 = 0x0008
)

// MaxChromaticity is the largest valid CurrentX/CurrentY value.
const MaxChromaticity uint16 = 0xFEFF

var ColorControl = zcl.ClusterDef{
	ID:   ColorControlID,
	Name: "Color Control",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Name: "CurrentHue", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0001, Name: "CurrentSaturation", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0002, Name: "RemainingTime", Type: zcl.TypeUint16, Access: zcl.AccessRead},
		{ID: AttrCurrentX, Name: "CurrentX", Type: zcl.TypeUint16, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: AttrCurrentY, Name: "CurrentY", Type: zcl.TypeUint16, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0007, Name: "ColorTemperatureMireds", Type: zcl.TypeUint16, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: AttrColorMode, Name: "ColorMode", Type: zcl.TypeEnum8, Access: zcl.AccessRead},
		{ID: 0x000F, Name: "Options", Type: zcl.TypeBitmap8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x400A, Name: "ColorCapabilities", Type: zcl.TypeBitmap16, Access: zcl.AccessRead},
	},
}

