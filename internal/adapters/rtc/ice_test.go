package rtc

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Callbox/internal/config"
)

func TestICEServersDefault(t *testing.T) {
	servers, err := ICEServers(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultICEServers, servers)

	servers[0].URLs = []string{"stun:changed"}
	assert.Equal(t, "stun:stun.l.google.com:19302", DefaultICEServers[0].URLs[0])
}

func TestICEServersConversion(t *testing.T) {
	servers, err := ICEServers([]config.ICEServer{
		{URLs: []string{" stun:stun.example:3478 ", ""}},
		{URLs: []string{"turn:turn.example:3478?transport=udp"}, Username: "u", Credential: "p"},
	})
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"stun:stun.example:3478"}, servers[0].URLs)
	assert.Nil(t, servers[0].Credential)
	assert.Equal(t, "p", servers[1].Credential)
}

func TestICEServersRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		server config.ICEServer
	}{
		{name: "no urls", server: config.ICEServer{}},
		{name: "http scheme", server: config.ICEServer{URLs: []string{"https://stun.example"}}},
		{name: "turn without credential", server: config.ICEServer{URLs: []string{"turns:turn.example"}, Username: "u"}},
		{name: "turn without username", server: config.ICEServer{URLs: []string{"turn:turn.example"}, Credential: "p"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ICEServers([]config.ICEServer{tt.server})
			assert.Error(t, err)
		})
	}
}

func TestConfigurationIsUsableByPion(t *testing.T) {
	servers, err := ICEServers(nil)
	require.NoError(t, err)
	api := webrtc.NewAPI()
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	require.NoError(t, err)
	require.NoError(t, pc.Close())
}
