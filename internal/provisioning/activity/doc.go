// Package activity implements the remote setup steps run on each launched
// instance: package upgrade, group install, pip install, script run and
// user creation.
//
// Every activity follows the same shape. It describes the instance through
// the compute provider, opens one SSH session, issues its commands in
// order, classifies the output and closes the session. A hard failure
// stops the remaining commands for that instance only.
package activity
