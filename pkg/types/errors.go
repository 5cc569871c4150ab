package types

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Callers classify failures with errors.Is.
var (
	// ErrValidation reports missing or invalid caller input
	ErrValidation = errors.New("validation error")
	// ErrConfig reports absent backend-specific configuration
	ErrConfig = errors.New("config error")
	// ErrCredential reports a key decryption failure or bad passphrase
	ErrCredential = errors.New("credential error")
	// ErrNotFound reports an unknown cloud, chain or node id
	ErrNotFound = errors.New("not found")
	// ErrCloudProvider reports any failure from a cloud backend call
	ErrCloudProvider = errors.New("cloud provider error")
	// ErrProvisioning reports a failed or unparsable provisioner run
	ErrProvisioning = errors.New("provisioning error")
	// ErrConflict reports a store transaction that lost an optimistic race
	ErrConflict = errors.New("conflict")
)

// ErrControllerDeletion is returned when a controller node is deleted outside
// of a whole-chain deletion.
var ErrControllerDeletion = fmt.Errorf("%w: controller node can only be removed with its chain", ErrValidation)

// OrphanedResourcesError is returned when a mutating operation failed after
// the cloud backend had already allocated instances. Nothing was committed to
// the store; Instances lists what may still exist on the provider side.
type OrphanedResourcesError struct {
	CloudID   string
	Instances []string
	// Released lists the instances that compensation managed to delete
	Released []string
	Err      error
}

func (e *OrphanedResourcesError) Error() string {
	msg := fmt.Sprintf("%v (orphaned instances on cloud %s: %s", e.Err, e.CloudID, strings.Join(e.Instances, ", "))
	if len(e.Released) > 0 {
		msg += fmt.Sprintf("; released: %s", strings.Join(e.Released, ", "))
	}
	return msg + ")"
}

func (e *OrphanedResourcesError) Unwrap() error {
	return e.Err
}

// Leaked returns the orphaned instances that were not released
func (e *OrphanedResourcesError) Leaked() []string {
	released := make(map[string]bool, len(e.Released))
	for _, id := range e.Released {
		released[id] = true
	}
	var out []string
	for _, id := range e.Instances {
		if !released[id] {
			out = append(out, id)
		}
	}
	return out
}
