// SPDX-License-Identifier: GPL-3.0-or-later

package pvshare

import (
	"errors"
	"testing"

	"github.com/bassosimone/errclass"
	"github.com/stretchr/testify/assert"
)

func TestDefaultErrClassifier(t *testing.T) {
	// Should return empty string for nil error
	assert.Equal(t, "", DefaultErrClassifier.Classify(nil))

	// Should return empty string for any error (no-op classifier)
	assert.Equal(t, "", DefaultErrClassifier.Classify(errors.New("boom")))
}

func TestErrClassifierFunc(t *testing.T) {
	// Adapting errclass.New should classify unknown errors as EGENERIC
	classifier := ErrClassifierFunc(errclass.New)
	assert.Equal(t, errclass.EGENERIC, classifier.Classify(errors.New("boom")))
}
