package clusters

import "zigbee-rgb-light/internal/zcl"

// On/Off cluster attribute IDs.
const (
	OnOffID          uint16 = 0x0006
	AttrOnOff        uint16 = 0x0000
	AttrStartUpOnOff uint16 = 0x4003
)

var OnOff = zcl.ClusterDef{
	ID:   OnOffID,
	Name: "On/Off",
	Attributes: []zcl.AttributeDef{
		{ID: AttrOnOff, Name: "OnOff", Type: zcl.TypeBool, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x4000, Name: "GlobalSceneControl", Type: zcl.TypeBool, Access: zcl.AccessRead},
		{ID: 0x4001, Name: "OnTime", Type: zcl.TypeUint16, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x4002, Name: "OffWaitTime", Type: zcl.TypeUint16, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: AttrStartUpOnOff, Name: "StartUpOnOff", Type: zcl.TypeEnum8, Access: zcl.AccessRead | zcl.AccessWrite},
	},
}
