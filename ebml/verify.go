package ebml

import (
	"context"
	"fmt"
)

// Verify walks every root element of doc, recursively, and returns
// ErrVerificationFailed the first time it finds an element whose id is
// not declared in the schema (a KindUnknown element) or whose payload
// fails to decode. A nil error means every element in the tree decoded
// cleanly against doc's schema.
func Verify(ctx context.Context, doc *Document) error {
	for el := range doc.Elements() {
		if err := VerifyElement(ctx, el); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// VerifyElement applies Verify's check to a single element and, for a
// MASTER element, recurses into its children.
func VerifyElement(ctx context.Context, el *Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if el.Type.Kind == KindUnknown {
		return fmt.Errorf("%w: unknown element id %#x at offset %d", ErrVerificationFailed, el.Type.ID, el.Offset)
	}

	value, err := el.Value(ctx)
	if err != nil {
		return fmt.Errorf("%w: element %q at offset %d: %v", ErrVerificationFailed, el.Type.Name, el.Offset, err)
	}

	if el.Type.Kind != KindMASTER {
		return nil
	}

	children, ok := value.([]*Element)
	if !ok {
		return nil
	}
	for _, child := range children {
		if err := VerifyElement(ctx, child); err != nil {
			return err
		}
	}
	return nil
}
