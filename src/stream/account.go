package stream

import (
	"fmt"
	"strconv"
	"strings"
)

// AccountID identifies an account by its (realm, number) pair. The string
// form, used in transfer lists and the node book, is "realm.num".
type AccountID struct {
	Realm int64
	Num   int64
}

// String ...
func (a AccountID) String() string {
	return fmt.Sprintf("%d.%d", a.Realm, a.Num)
}

// ParseAccountID parses the "realm.num" string form of an account ID.
func ParseAccountID(s string) (AccountID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return AccountID{}, fmt.Errorf("account ID %q is not of the form realm.num", s)
	}

	realm, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return AccountID{}, fmt.Errorf("account ID %q realm: %v", s, err)
	}

	num, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return AccountID{}, fmt.Errorf("account ID %q num: %v", s, err)
	}

	return AccountID{Realm: realm, Num: num}, nil
}
