package protocol

// Command identifies a protocol operation. The high nibble (0x00, 0x10,
// 0x20) partitions commands into session, directory and file classes
// respectively; see Class.
type Command uint8

// Command opcodes. Numeric values match the deployed protocol so that
// existing clients interoperate bit-for-bit; do not renumber these.
const (
	CmdMount Command = 0x00
	CmdUmount Command = 0x01

	CmdOpenDir   Command = 0x10
	CmdReadDir   Command = 0x11
	CmdCloseDir  Command = 0x12
	CmdMkDir     Command = 0x13
	CmdRmDir     Command = 0x14
	CmdTellDir   Command = 0x15
	CmdSeekDir   Command = 0x16
	CmdOpenDirX  Command = 0x17
	CmdReadDirX  Command = 0x18

	CmdOpenFileOld Command = 0x20
	CmdReadBlock   Command = 0x21
	CmdWriteBlock  Command = 0x22
	CmdCloseFile   Command = 0x23
	CmdStatFile    Command = 0x24
	CmdSeekFile    Command = 0x25
	CmdUnlinkFile  Command = 0x26
	CmdChmodFile   Command = 0x27
	CmdRenameFile  Command = 0x28
	CmdOpenFile    Command = 0x29
)

// Class partitions commands into session, directory and file groups,
// mirroring the high nibble of the opcode.
type Class uint8

const (
	ClassSession   Class = 0x00
	ClassDirectory Class = 0x10
	ClassFile      Class = 0x20
)

// ClassOf returns the command class for c.
func ClassOf(c Command) Class {
	return Class(uint8(c) & 0xF0)
}

// Name returns a human-readable name for c, for logging.
func (c Command) Name() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

var commandNames = map[Command]string{
	CmdMount:       "MOUNT",
	CmdUmount:      "UMOUNT",
	CmdOpenDir:     "OPENDIR",
	CmdReadDir:     "READDIR",
	CmdCloseDir:    "CLOSEDIR",
	CmdMkDir:       "MKDIR",
	CmdRmDir:       "RMDIR",
	CmdTellDir:     "TELLDIR",
	CmdSeekDir:     "SEEKDIR",
	CmdOpenDirX:    "OPENDIRX",
	CmdReadDirX:    "READDIRX",
	CmdOpenFileOld: "OPENFILE_OLD",
	CmdReadBlock:   "READBLOCK",
	CmdWriteBlock:  "WRITEBLOCK",
	CmdCloseFile:   "CLOSEFILE",
	CmdStatFile:    "STATFILE",
	CmdSeekFile:    "SEEKFILE",
	CmdUnlinkFile:  "UNLINKFILE",
	CmdChmodFile:   "CHMODFILE",
	CmdRenameFile:  "RENAMEFILE",
	CmdOpenFile:    "OPENFILE",
}
