package fat32

// Offsets into the BIOS Parameter Block (first sector of a FAT32
// partition). Names follow the Microsoft FAT specification's field names,
// lower camel-cased.
const (
	bpbBytsPerSec = 11 // Sector size [byte] (WORD)
	bpbSecPerClus = 13 // Cluster size [sector] (BYTE)
	bpbRsvdSecCnt = 14 // Size of reserved area [sector] (WORD)
	bpbNumFATs    = 16 // Number of FATs (BYTE)
	bpbTotSec16   = 19 // Volume size, 16-bit form [sector] (WORD)
	bpbFATSz16    = 22 // FAT size, 16-bit form [sector] (WORD)
	bpbTotSec32   = 32 // Volume size, 32-bit form [sector] (DWORD)

	bpbFATSz32    = 36 // FAT32: FAT size [sector] (DWORD)
	bpbFSVer32    = 42 // FAT32: Filesystem version, must be 0 (WORD)
	bpbRootClus32 = 44 // FAT32: Root directory cluster (DWORD)
	bs55AA        = 510
)

// Offsets into a 32-byte short directory entry.
const (
	dirNameOff       = 0  // DIR_Name[11], 8.3 name padded with spaces
	dirAttrOff       = 11 // DIR_Attr
	dirNTresOff      = 12 // DIR_NTRes, case flags for base/extension
	dirCrtTimeTenOff = 13 // DIR_CrtTimeTenth
	dirCrtTimeOff    = 14 // DIR_CrtTime
	dirCrtDateOff    = 16 // DIR_CrtDate
	dirLstAccDateOff = 18 // DIR_LstAccDate
	dirFstClusHIOff  = 20 // DIR_FstClusHI
	dirModTimeOff    = 22 // DIR_WrtTime
	dirModDateOff    = 24 // DIR_WrtDate
	dirFstClusLOOff  = 26 // DIR_FstClusLO
	dirFileSizeOff   = 28 // DIR_FileSize
)

// Offsets into a 32-byte long-filename directory entry.
const (
	ldirOrdOff         = 0  // LDIR_Ord, sequence number
	ldirName1Off       = 1  // LDIR_Name1[5], UCS-2 chars 1-5
	ldirAttrOff        = 11 // LDIR_Attr, always 0x0F
	ldirTypeOff        = 12 // LDIR_Type, always 0
	ldirChksumOff      = 13 // LDIR_Chksum, checksum of the associated SFN
	ldirName2Off       = 14 // LDIR_Name2[6], UCS-2 chars 6-11
	ldirFstClusLOOff   = 26 // LDIR_FstClusLO, always 0
	ldirName3Off       = 28 // LDIR_Name3[2], UCS-2 chars 12-13
)

const (
	sizeDirEntry = 32

	// Directory attribute byte bits.
	amReadOnly   = 0x01
	amHidden     = 0x02
	amSystem     = 0x04
	amVolumeID   = 0x08
	amDirectory  = 0x10
	amArchive    = 0x20
	amLongName   = amReadOnly | amHidden | amSystem | amVolumeID // 0x0F

	// First-byte markers for a directory entry's name field.
	direntFree    = 0x00
	direntDeleted = 0xE5

	// LDIR_Ord bits.
	lastLongEntry = 0x40
	ordMask       = 0x1F

	maskCluster28 = 0x0FFF_FFFF
	clusterEOFMin = 0x0FFF_FFF8
)
