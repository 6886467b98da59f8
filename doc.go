// Package qspi drives serial NOR flash through the i.MX6ULL QuadSPI
// controller in IP mode: flash commands are encoded as LUT sequences,
// issued as IP commands and their data moved through the RX and TX buffers.
//
//	c, err := qspi.Open(qspi.Options{})
//	...
//	f := qspi.NewFlash(c)
//	id, name, err := f.ReadID()
//
// Only 24-bit addressing in extended SPI mode is used, so at most the first
// 16MB of a part are reachable.
//
// # References:
//
// NXP
//   - [IMX6ULLRM]: i.MX 6ULL Applications Processor Reference Manual (https://www.nxp.com/docs/en/reference-manual/IMX6ULLRM.pdf)
//   - [IMXRT1064RM]: i.MX RT1064 Processor Reference Manual, 26.7.8 (LUT instruction set shared with FlexSPI)
//
// SPI Flash
//   - [N25Q256A]: Micron Serial NOR Flash Memory 3V, Multiple I/O, 4KB Sector Erase, N25Q256A
//   - [N25Q32]: N25Q032A Micron Serial NOR Flash Memory datasheet (could not find the official public URL)
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
package qspi
