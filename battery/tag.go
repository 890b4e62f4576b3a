package battery

import (
	"strconv"

	"batterycode-go/errcode"
)

// TagInvalid is never handed out as a live tag.
const TagInvalid uint32 = 0

// tagManager owns the battery tag. All methods run under Miniclass.mu.
type tagManager struct {
	tag uint32
}

func (t *tagManager) advance() {
	t.tag++
	if t.tag == TagInvalid {
		t.tag++
	}
}

func (t *tagManager) current() uint32 { return t.tag }

func (t *tagManager) validate(op string, presented uint32) error {
	if presented != t.tag {
		return errcode.New(errcode.NoSuchDevice, op, "stale tag "+strconv.FormatUint(uint64(presented), 10))
	}
	return nil
}
