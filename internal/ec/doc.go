// Package ec provides byte-level access to the MSI embedded controller
// and the pure codec that translates between raw register bytes and
// human units.
//
// The EC exposes hardware state as a flat byte-addressable register
// file. On Linux the ec_sys kernel module (loaded with write_support=1)
// surfaces it at /sys/kernel/debug/ec/ec0/io; every operation is a
// single seek followed by a one- or two-byte read or write.
//
//	┌──────────────┐   seek+read/write   ┌──────────────────────┐
//	│ ec.Transport │ ◄─────────────────► │ /sys/kernel/debug/   │
//	│ (File)       │                     │   ec/ec0/io          │
//	└──────────────┘                     └──────────────────────┘
//	       ▲
//	       │ raw bytes
//	┌──────┴───────┐
//	│ codec        │  DecodeRPM, DecodeFanMode, battery threshold,
//	│ (pure funcs) │  boost; no I/O, fully deterministic
//	└──────────────┘
//
// The codec never touches hardware and the transport never interprets
// values; higher layers (internal/engine) combine the two.
//
// Encoding rules, fixed by the EC firmware:
//   - Fan RPM registers hold 478000/rpm as a big-endian word; a raw
//     zero means the fan is stopped or the register is unreadable.
//   - The battery charging threshold register holds percentage+128,
//     so the valid byte range is 148..228 for 20%..100%.
//   - Fan mode is one of 12 (Auto), 76 (Basic), 140 (Advanced); any
//     other byte is displayed as Unknown and never written back.
//   - CoolerBoost reads as engaged for any byte >= 128.
package ec
