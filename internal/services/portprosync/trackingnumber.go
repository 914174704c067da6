package portprosync

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	trackingPrefix = "NSL"
	suffixLen      = 4
	base36         = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// TrackingNumberPattern matches numbers produced by NewTrackingNumber.
var TrackingNumberPattern = regexp.MustCompile(`^NSL-[0-9A-Z]+-[0-9A-Z]{4}$`)

// NewTrackingNumber returns NSL-<base36 unix millis>-<4 random base36 chars>.
func NewTrackingNumber(now time.Time) (string, error) {
	var suffix [suffixLen]byte
	max := big.NewInt(int64(len(base36)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "tracking number suffix")
		}
		suffix[i] = base36[n.Int64()]
	}
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return trackingPrefix + "-" + ts + "-" + string(suffix[:]), nil
}

// trackingNumbers hands out numbers that are unique within one run.
type trackingNumbers struct {
	now  func() time.Time
	seen map[string]struct{}
}

func newTrackingNumbers(now func() time.Time) *trackingNumbers {
	return &trackingNumbers{now: now, seen: make(map[string]struct{})}
}

func (g *trackingNumbers) next() (string, error) {
	for attempt := 0; attempt < 8; attempt++ {
		tn, err := NewTrackingNumber(g.now())
		if err != nil {
			return "", err
		}
		if _, dup := g.seen[tn]; dup {
			continue
		}
		g.seen[tn] = struct{}{}
		return tn, nil
	}
	return "", errors.New("tracking number: no unique value after 8 attempts")
}
