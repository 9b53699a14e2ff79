package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicService_GetAddresses(t *testing.T) {
	for name, tc := range map[string]struct {
		addrs    []string
		expected []string
	}{
		"empty":     {nil, []string{}},
		"single":    {[]string{"localhost:2112"}, []string{"localhost:2112"}},
		"duplicate": {[]string{":1", "127.0.0.1:2", ":1"}, []string{":1", "127.0.0.1:2"}},
	} {
		t.Run(name, func(t *testing.T) {
			s := BasicService{Enabled: true, Addresses: tc.addrs}
			require.Equal(t, tc.expected, s.GetAddresses())
		})
	}
}
