// Package cutman roots the module and carries assets that ship with the
// binary but don't belong to any one internal package.
package cutman

import _ "embed"

//go:embed openapi.yaml
var OpenAPISpec []byte
