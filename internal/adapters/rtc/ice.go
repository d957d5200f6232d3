// Package rtc turns configured ICE servers into the list clients use for
// their own peer connections. Media never passes through this server.
package rtc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Callbox/internal/config"
)

var DefaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
}

// ICEServers converts configured servers, falling back to DefaultICEServers
// when none are configured.
func ICEServers(servers []config.ICEServer) ([]webrtc.ICEServer, error) {
	if len(servers) == 0 {
		out := make([]webrtc.ICEServer, len(DefaultICEServers))
		copy(out, DefaultICEServers)
		return out, nil
	}
	out := make([]webrtc.ICEServer, 0, len(servers))
	for i, s := range servers {
		srv := webrtc.ICEServer{Username: strings.TrimSpace(s.Username)}
		for _, u := range s.URLs {
			if u = strings.TrimSpace(u); u != "" {
				srv.URLs = append(srv.URLs, u)
			}
		}
		if c := strings.TrimSpace(s.Credential); c != "" {
			srv.Credential = c
		}
		if err := validate(srv); err != nil {
			return nil, fmt.Errorf("ice_servers[%d]: %w", i, err)
		}
		out = append(out, srv)
	}
	return out, nil
}

func validate(s webrtc.ICEServer) error {
	if len(s.URLs) == 0 {
		return errors.New("missing urls")
	}
	turn := false
	for _, u := range s.URLs {
		switch {
		case strings.HasPrefix(u, "stun:"), strings.HasPrefix(u, "stuns:"):
		case strings.HasPrefix(u, "turn:"), strings.HasPrefix(u, "turns:"):
			turn = true
		default:
			return fmt.Errorf("unsupported url scheme: %q", u)
		}
	}
	if !turn {
		return nil
	}
	if s.Username == "" {
		return errors.New("turn urls require username")
	}
	if cred, ok := s.Credential.(string); !ok || cred == "" {
		return errors.New("turn urls require credential")
	}
	return nil
}
