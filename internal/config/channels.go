// ABOUTME: Parser for channel selections such as "1,2" or "1-4,7"
// ABOUTME: Produces a strictly ascending 0-based channel list
package config

import (
	"github.com/pkg/errors"

	"github.com/Sendspin/sendspin-bridge/pkg/protocol"
)

// ErrChannelList is returned for malformed channel selections
var ErrChannelList = errors.New("bad channel list")

// ParseChannelList parses 1-based channel numbers separated by ',' with
// '-' for ranges. Numbers must be strictly ascending. Blanks are ignored.
func ParseChannelList(s string) ([]int, error) {
	var list []int
	last := 0
	rng := false
	sep := false
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c >= '0' && c <= '9':
			n := 0
			for i < len(s) && s[i] >= '0' && s[i] <= '9' {
				n = 10*n + int(s[i]-'0')
				if n > protocol.MaxChannels {
					return nil, errors.Wrapf(ErrChannelList, "channel out of range in %q", s)
				}
				i++
			}
			if n < 1 || n <= last {
				return nil, errors.Wrapf(ErrChannelList, "channel %d out of order in %q", n, s)
			}
			first := n
			if rng {
				first = last + 1
			}
			for k := first; k <= n; k++ {
				list = append(list, k-1)
			}
			last = n
			rng = false
			sep = false
			// A separator or the end must follow.
			for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
				i++
			}
			if i < len(s) {
				switch s[i] {
				case ',':
				case '-':
					rng = true
				default:
					return nil, errors.Wrapf(ErrChannelList, "unexpected %q in %q", s[i], s)
				}
				i++
				sep = true
			}
		default:
			return nil, errors.Wrapf(ErrChannelList, "unexpected %q in %q", c, s)
		}
	}
	if sep {
		return nil, errors.Wrapf(ErrChannelList, "trailing separator in %q", s)
	}
	if len(list) == 0 {
		return nil, errors.Wrapf(ErrChannelList, "no channels in %q", s)
	}
	return list, nil
}
