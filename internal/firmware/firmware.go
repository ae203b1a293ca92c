// Package firmware inspects EC firmware update images for the fan
// profile tables they ship. MSI images carry up to seven profile
// blocks at fixed offsets; reading them shows what a firmware update
// would program before it is ever flashed.
package firmware

import (
	"fmt"

	"github.com/icesealed/wyvern/internal/curve"
	"github.com/icesealed/wyvern/internal/ec"
)

// NumCandidates is the number of profile blocks probed in an image.
const NumCandidates = 7

// Register blocks of the seven candidate profiles. Offsets are into
// the firmware image, not the live EC address space.
var (
	cpuTempAddrs = [NumCandidates][curve.NumThresholds]uint32{
		{0xf801, 0xf802, 0xf803, 0xf804, 0xf805, 0xf806},
		{0xf841, 0xf842, 0xf843, 0xf844, 0xf845, 0xf846},
		{0xf871, 0xf872, 0xf873, 0xf874, 0xf875, 0xf876},
		{0xf881, 0xf882, 0xf883, 0xf884, 0xf885, 0xf886},
		{0xf8b1, 0xf8b2, 0xf8b3, 0xf8b4, 0xf8b5, 0xf8b6},
		{0xf8c1, 0xf8c2, 0xf8c3, 0xf8c4, 0xf8c5, 0xf8c6},
		{0xf8f1, 0xf8f2, 0xf8f3, 0xf8f4, 0xf8f5, 0xf8f6},
	}

	cpuFanSpeedAddrs = [NumCandidates][curve.NumSpeeds]uint32{
		{0xf80b, 0xf80c, 0xf80d, 0xf80e, 0xf80f, 0xf810, 0xf811},
		{0xf84b, 0xf84c, 0xf84d, 0xf84e, 0xf84f, 0xf850, 0xf851},
		{0xf87b, 0xf87c, 0xf87d, 0xf87e, 0xf87f, 0xf880, 0xf881},
		{0xf88b, 0xf88c, 0xf88d, 0xf88e, 0xf88f, 0xf890, 0xf891},
		{0xf8bb, 0xf8bc, 0xf8bd, 0xf8be, 0xf8bf, 0xf8c0, 0xf8c1},
		{0xf8cb, 0xf8cc, 0xf8cd, 0xf8ce, 0xf8cf, 0xf8d0, 0xf8d1},
		{0xf8fb, 0xf8fc, 0xf8fd, 0xf8fe, 0xf8ff, 0xf900, 0xf901},
	}

	gpuTempAddrs = [NumCandidates][curve.NumThresholds]uint32{
		{0xf821, 0xf822, 0xf823, 0xf824, 0xf825, 0xf826},
		{0xf861, 0xf862, 0xf863, 0xf864, 0xf865, 0xf866},
		{0xf891, 0xf892, 0xf893, 0xf894, 0xf895, 0xf896},
		{0xf8a1, 0xf8a2, 0xf8a3, 0xf8a4, 0xf8a5, 0xf8a6},
		{0xf8d1, 0xf8d2, 0xf8d3, 0xf8d4, 0xf8d5, 0xf8d6},
		{0xf8e1, 0xf8e2, 0xf8e3, 0xf8e4, 0xf8e5, 0xf8e6},
		{0xf911, 0xf912, 0xf913, 0xf914, 0xf915, 0xf916},
	}

	gpuFanSpeedAddrs = [NumCandidates][curve.NumSpeeds]uint32{
		{0xf82b, 0xf82c, 0xf82d, 0xf82e, 0xf82f, 0xf830, 0xf831},
		{0xf86b, 0xf86c, 0xf86d, 0xf86e, 0xf86f, 0xf870, 0xf871},
		{0xf89b, 0xf89c, 0xf89d, 0xf89e, 0xf89f, 0xf8a0, 0xf8a1},
		{0xf8ab, 0xf8ac, 0xf8ad, 0xf8ae, 0xf8af, 0xf8b0, 0xf8b1},
		{0xf8db, 0xf8dc, 0xf8dd, 0xf8de, 0xf8df, 0xf8e0, 0xf8e1},
		{0xf8eb, 0xf8ec, 0xf8ed, 0xf8ee, 0xf8ef, 0xf8f0, 0xf8f1},
		{0xf91b, 0xf91c, 0xf91d, 0xf91e, 0xf91f, 0xf920, 0xf921},
	}
)

// ValueAt pairs a register value with the image offset it came from,
// for value@address listings.
type ValueAt struct {
	Address uint32 `json:"address"`
	Value   byte   `json:"value"`
}

// Candidate is one potential fan profile block read from an image.
type Candidate struct {
	Index        int                          `json:"index"`
	CPUTemps     [curve.NumThresholds]ValueAt `json:"cpu_temps"`
	CPUFanSpeeds [curve.NumSpeeds]ValueAt     `json:"cpu_fan_speeds"`
	GPUTemps     [curve.NumThresholds]ValueAt `json:"gpu_temps"`
	GPUFanSpeeds [curve.NumSpeeds]ValueAt     `json:"gpu_fan_speeds"`
}

// Name returns the candidate's 1-based display name.
func (c Candidate) Name() string {
	return fmt.Sprintf("profile %d", c.Index+1)
}

// Scan reads all seven candidate profile blocks. The transport should
// be a read-only image file; scanning never writes. Reads past the end
// of a truncated image surface as the transport's read error.
func Scan(tr ec.Transport) ([]Candidate, error) {
	candidates := make([]Candidate, 0, NumCandidates)

	for k := 0; k < NumCandidates; k++ {
		c := Candidate{Index: k}

		for i, addr := range cpuTempAddrs[k] {
			b, err := tr.ReadByte(addr)
			if err != nil {
				return nil, fmt.Errorf("firmware: candidate %d: %w", k+1, err)
			}
			c.CPUTemps[i] = ValueAt{Address: addr, Value: b}
		}
		for i, addr := range cpuFanSpeedAddrs[k] {
			b, err := tr.ReadByte(addr)
			if err != nil {
				return nil, fmt.Errorf("firmware: candidate %d: %w", k+1, err)
			}
			c.CPUFanSpeeds[i] = ValueAt{Address: addr, Value: b}
		}
		for i, addr := range gpuTempAddrs[k] {
			b, err := tr.ReadByte(addr)
			if err != nil {
				return nil, fmt.Errorf("firmware: candidate %d: %w", k+1, err)
			}
			c.GPUTemps[i] = ValueAt{Address: addr, Value: b}
		}
		for i, addr := range gpuFanSpeedAddrs[k] {
			b, err := tr.ReadByte(addr)
			if err != nil {
				return nil, fmt.Errorf("firmware: candidate %d: %w", k+1, err)
			}
			c.GPUFanSpeeds[i] = ValueAt{Address: addr, Value: b}
		}

		candidates = append(candidates, c)
	}

	return candidates, nil
}
