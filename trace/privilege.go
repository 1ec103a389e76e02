// Package trace holds the data types shared between the packet
// decoder and the tracer: privilege levels, trap info, the branch-map
// FIFO, the return stack and the retirement item stream.
package trace

import "github.com/fzi-forschungszentrum-informatik/riscv-etrace/internal/xerrors"

// Privilege is a RISC-V privilege level.
type Privilege uint8

const (
	User Privilege = iota
	Supervisor
	Machine
)

func (p Privilege) String() string {
	switch p {
	case User:
		return "U"
	case Supervisor:
		return "S"
	case Machine:
		return "M"
	default:
		return "?"
	}
}

// DecodePrivilege converts a raw 2-bit field into a Privilege. 0b10 is
// reserved.
func DecodePrivilege(raw uint8) (Privilege, error) {
	switch raw {
	case 0b00:
		return User, nil
	case 0b01:
		return Supervisor, nil
	case 0b11:
		return Machine, nil
	default:
		return 0, xerrors.New(xerrors.Payload, "reserved privilege encoding")
	}
}
