package clusters

import "zigbee-rgb-light/internal/zcl"

// Level Control cluster attribute IDs.
const (
	LevelControlID   uint16 = 0x0008
	AttrCurrentLevel uint16 = 0x0000
)

var LevelControl = zcl.ClusterDef{
	ID:   LevelControlID,
	Name: "Level Control",
	Attributes: []zcl.AttributeDef{
		{ID: AttrCurrentLevel, Name: "CurrentLevel", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0001, Name: "RemainingTime", Type: zcl.TypeUint16, Access: zcl.AccessRead},
		{ID: 0x000F, Name: "Options", Type: zcl.TypeBitmap8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0010, Name: "OnOffTransitionTime", Type: zcl.TypeUint16, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0011, Name: "OnLevel", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x4000, Name: "StartUpCurrentLevel", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessWrite},
	},
}
