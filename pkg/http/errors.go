package http

import (
	"errors"

	conderr "github.com/openverse/conductor/pkg/errors"
)

var ErrorUnauthorized = &conderr.Error{
	Type: conderr.User,
	Help: `The request failed authentication

This most likely means you have a missing or incorrect token. Please
make sure you supply a service token, either by setting the
environment variable CONDUCTOR_TOKEN, or using the argument --token
with conductorctl.

`,
	Err: errors.New("request failed authentication"),
}

func MakeAPINotFound(path string) *conderr.Error {
	return &conderr.Error{
		Type: conderr.Missing,
		Help: `The API endpoint requested is not supported by this server.

This indicates that your client (probably conductorctl) and the
conductord you are talking to disagree about the API. Please make sure
both are up to date.

If you still have problems, please file an issue at

    https://github.com/openverse/conductor/issues

mentioning what you were attempting to do, and include this path:

    ` + path + `
`,
		Err: errors.New("API endpoint not found"),
	}
}
