package normalize

// decodePortList expands a Q-BRIDGE PortList octet string into bridge port
// numbers. Ports are 1-based; bit 7 (MSB) of octet 0 is port 1.
func decodePortList(b []byte) []int {
	var ports []int
	for i, octet := range b {
		for bit := 0; bit < 8; bit++ {
			if octet&(0x80>>bit) != 0 {
				ports = append(ports, i*8+bit+1)
			}
		}
	}
	return ports
}
