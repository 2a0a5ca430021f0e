package registry

import (
	"fmt"
	"strings"

	"github.com/mockforge/core/internal/model"
)

// loadSource dispatches to the protocol-appropriate loader. Cycle
// detection, schema-reference resolution, and file-format parsing all
// live in the per-protocol loader files in this package.
func loadSource(src Source) ([]*model.SpecOperation, error) {
	switch src.Protocol {
	case model.ProtocolHTTP, model.ProtocolWS, model.ProtocolGraphQL:
		return loadOpenAPI(src.Path)
	case model.ProtocolGRPC:
		return loadGRPCDescriptor(src.Path)
	case model.ProtocolMQTT, model.ProtocolAMQP, model.ProtocolKafka,
		model.ProtocolFTP, model.ProtocolSMTP, model.ProtocolTCP:
		return loadFixtureFile(src.Protocol, src.Path)
	default:
		return nil, fmt.Errorf("registry: no loader registered for protocol %q", src.Protocol)
	}
}

func fileExt(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(path[i+1:])
}
