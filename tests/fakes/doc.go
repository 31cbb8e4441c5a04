// Package fakes provides test doubles for the AWS service clients keyrotator talks to.
//
// Fakes are manually implemented (not generated) and keep state in memory so
// a test can seed an account, run the rotation job against it and inspect the
// resulting users, keys and published messages.
//
// Usage:
//
//	iamClient := fakes.NewFakeIAMClient()
//	iamClient.AddUser("alice", map[string]string{"Owner": "alice@example.com"})
//	iamClient.AddKey("alice", "AKIAOLD", now.Add(-90*24*time.Hour))
//	gateway := directory.NewIAMGateway(iamClient, logging.Nop())
package fakes
