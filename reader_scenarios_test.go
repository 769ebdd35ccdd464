package odatabatch

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReader_MIME_ContentIDCrossReference(t *testing.T) {
	payload := "" +
		"--batch_1\r\n" +
		"Content-Type: multipart/mixed; boundary=changeset_1\r\n" +
		"\r\n" +
		"--changeset_1\r\n" +
		"Content-Type: application/http\r\n" +
		"Content-Transfer-Encoding: binary\r\n" +
		"Content-ID: 1\r\n" +
		"\r\n" +
		"POST /Customers HTTP/1.1\r\n" +
		"Content-Type: application/json\r\n" +
		"\r\n" +
		"{\"Name\":\"Alice\"}\r\n" +
		"--changeset_1\r\n" +
		"Content-Type: application/http\r\n" +
		"Content-Transfer-Encoding: binary\r\n" +
		"Content-ID: 2\r\n" +
		"\r\n" +
		"POST $1/Orders HTTP/1.1\r\n" +
		"Content-Type: application/json\r\n" +
		"\r\n" +
		"{\"Total\":10}\r\n" +
		"--changeset_1--\r\n" +
		"--batch_1--\r\n"

	r, err := OpenRequest(strings.NewReader(payload), "multipart/mixed; boundary=batch_1", NewSettings())
	require.NoError(t, err)

	cont, err := r.Advance()
	require.NoError(t, err)
	require.True(t, cont)
	require.Equal(t, StateChangesetStart, r.State())

	cont, err = r.Advance()
	require.NoError(t, err)
	require.True(t, cont)
	require.Equal(t, StateOperation, r.State())

	msg1, err := r.CreateOperationRequest()
	require.NoError(t, err)
	require.Equal(t, "/Customers", msg1.URI())
	require.Equal(t, "1", msg1.ContentID())

	body1, err := msg1.OpenBody()
	require.NoError(t, err)
	data1, err := io.ReadAll(body1)
	require.NoError(t, err)
	require.Equal(t, `{"Name":"Alice"}`, string(data1))

	cont, err = r.Advance()
	require.NoError(t, err)
	require.True(t, cont)
	require.Equal(t, StateOperation, r.State())

	msg2, err := r.CreateOperationRequest()
	require.NoError(t, err)
	require.Equal(t, "/Customers/Orders", msg2.URI())

	body2, err := msg2.OpenBody()
	require.NoError(t, err)
	data2, err := io.ReadAll(body2)
	require.NoError(t, err)
	require.Equal(t, `{"Total":10}`, string(data2))

	cont, err = r.Advance()
	require.NoError(t, err)
	require.True(t, cont)
	require.Equal(t, StateChangesetEnd, r.State())

	cont, err = r.Advance()
	require.NoError(t, err)
	require.False(t, cont)
	require.Equal(t, StateCompleted, r.State())
}

func TestReader_MIME_GetInsideChangesetRejected(t *testing.T) {
	payload := "" +
		"--batch_2\r\n" +
		"Content-Type: multipart/mixed; boundary=cs2\r\n" +
		"\r\n" +
		"--cs2\r\n" +
		"Content-Type: application/http\r\n" +
		"Content-ID: 1\r\n" +
		"\r\n" +
		"GET /Customers HTTP/1.1\r\n" +
		"\r\n" +
		"--cs2--\r\n" +
		"--batch_2--\r\n"

	r, err := OpenRequest(strings.NewReader(payload), "multipart/mixed; boundary=batch_2", NewSettings())
	require.NoError(t, err)

	_, err = r.Advance()
	require.NoError(t, err)
	require.Equal(t, StateChangesetStart, r.State())

	_, err = r.Advance()
	require.True(t, errors.Is(err, ErrQueryMethodInChangeset))
	require.Equal(t, StateException, r.State())
}

func TestReader_JSON_AtomicityGroupAndDependsOn(t *testing.T) {
	doc := `{"requests":[
		{"id":"1","method":"POST","url":"/Customers","atomicityGroup":"g1"},
		{"id":"2","method":"POST","url":"/Orders","atomicityGroup":"g1","dependsOn":["1"]},
		{"id":"3","method":"GET","url":"/Products"}
	]}`

	r, err := OpenRequest(strings.NewReader(doc), "application/json", NewSettings())
	require.NoError(t, err)

	_, err = r.Advance()
	require.NoError(t, err)
	require.Equal(t, StateChangesetStart, r.State())

	_, err = r.Advance()
	require.NoError(t, err)
	require.Equal(t, StateOperation, r.State())
	msg1, err := r.CreateOperationRequest()
	require.NoError(t, err)
	require.Equal(t, "1", msg1.ContentID())
	require.Empty(t, msg1.DependsOn())

	_, err = r.Advance()
	require.NoError(t, err)
	require.Equal(t, StateOperation, r.State())
	msg2, err := r.CreateOperationRequest()
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, msg2.DependsOn())

	_, err = r.Advance()
	require.NoError(t, err)
	require.Equal(t, StateChangesetEnd, r.State())

	_, err = r.Advance()
	require.NoError(t, err)
	require.Equal(t, StateOperation, r.State())
	msg3, err := r.CreateOperationRequest()
	require.NoError(t, err)
	require.Equal(t, "/Products", msg3.URI())

	cont, err := r.Advance()
	require.NoError(t, err)
	require.False(t, cont)
	require.Equal(t, StateCompleted, r.State())
}

func TestReader_JSON_ForwardReferenceRejected(t *testing.T) {
	doc := `{"requests":[
		{"id":"1","method":"GET","url":"/A","dependsOn":["2"]},
		{"id":"2","method":"GET","url":"/B"}
	]}`

	r, err := OpenRequest(strings.NewReader(doc), "application/json", NewSettings())
	require.NoError(t, err)

	_, err = r.Advance()
	require.True(t, errors.Is(err, ErrForwardReferenceNotAllowed))
	require.Equal(t, StateException, r.State())
}

func TestReader_JSON_SelfGroupReferenceRejected(t *testing.T) {
	doc := `{"requests":[
		{"id":"1","method":"POST","url":"/A","atomicityGroup":"g1","dependsOn":["g1"]}
	]}`

	r, err := OpenRequest(strings.NewReader(doc), "application/json", NewSettings())
	require.NoError(t, err)

	_, err = r.Advance()
	require.NoError(t, err)
	require.Equal(t, StateChangesetStart, r.State())

	_, err = r.Advance()
	require.True(t, errors.Is(err, ErrSelfGroupReference))
	require.Equal(t, StateException, r.State())
}

func TestReader_MIME_QuotaExceeded(t *testing.T) {
	payload := "" +
		"--batch_3\r\n" +
		"Content-Type: application/http\r\n" +
		"\r\n" +
		"GET /A HTTP/1.1\r\n" +
		"\r\n" +
		"--batch_3\r\n" +
		"Content-Type: application/http\r\n" +
		"\r\n" +
		"GET /B HTTP/1.1\r\n" +
		"\r\n" +
		"--batch_3--\r\n"

	settings := NewSettings(WithMaxPartsPerBatch(1))
	r, err := OpenRequest(strings.NewReader(payload), "multipart/mixed; boundary=batch_3", settings)
	require.NoError(t, err)

	_, err = r.Advance()
	require.NoError(t, err)
	require.Equal(t, StateOperation, r.State())
	_, err = r.CreateOperationRequest()
	require.NoError(t, err)

	_, err = r.Advance()
	require.True(t, errors.Is(err, ErrQuotaExceeded))
	require.Equal(t, StateException, r.State())
}
