package discovery

import (
	"context"
	"fmt"

	"github.com/tosca-iot/tosca-go/pkg/descriptor"
)

// DocumentFetcher retrieves a descriptor document from a URL.
// transport.Client implements it.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, url string) (*descriptor.Document, error)
}

// FetchDescriptor retrieves the descriptor of a discovered device. When the
// TXT record carried an identity, the document must match it.
func FetchDescriptor(ctx context.Context, client DocumentFetcher, h DeviceHandle) (*descriptor.Document, error) {
	u, err := h.DescriptorURL()
	if err != nil {
		return nil, err
	}
	doc, err := client.FetchDocument(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, u, err)
	}
	if h.Identity != "" && doc.Device.Identity != h.Identity {
		return nil, fmt.Errorf("%w: %s: identity %q, advertised %q",
			ErrFetchFailed, u, doc.Device.Identity, h.Identity)
	}
	return doc, nil
}
