package clusters

import "zigbee-rgb-light/internal/zcl"

// Light registers the server clusters of a color dimmable light endpoint.
func Light(r *zcl.Registry) {
	r.Register(OnOff)        // 0x0006
	r.Register(LevelControl) // 0x0008
	r.Register(ColorControl) // 0x0300
}
