package fakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// FakeUser is an IAM user held by FakeIAMClient.
type FakeUser struct {
	Name string
	Tags map[string]string
	Keys []*FakeAccessKey
}

// FakeAccessKey is an access key held by FakeIAMClient.
type FakeAccessKey struct {
	ID        string
	Secret    string
	CreatedAt time.Time
	Status    types.StatusType
	LastUsed  *time.Time
}

// FakeIAMClient is an in-memory implementation of directory.IAMClientAPI.
// Keys are returned in insertion order, which lets tests control the order IAM reports them in.
type FakeIAMClient struct {
	mu sync.Mutex

	Users []*FakeUser
	// Errors maps operation names (e.g. "CreateAccessKey") to errors to return
	Errors map[string]error
	// Calls records mutating operations as "Operation:user:key"
	Calls []string
	// Now stamps created keys; defaults to time.Now
	Now func() time.Time
	// PageSize splits ListUsers into pages when > 0
	PageSize int

	nextKey int
}

// NewFakeIAMClient creates an empty fake account.
func NewFakeIAMClient() *FakeIAMClient {
	return &FakeIAMClient{Errors: make(map[string]error)}
}

// AddUser adds a user with the given tags.
func (f *FakeIAMClient) AddUser(name string, tags map[string]string) *FakeUser {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := &FakeUser{Name: name, Tags: tags}
	f.Users = append(f.Users, u)
	return u
}

// AddKey appends an active, never-used key to the user.
func (f *FakeIAMClient) AddKey(user, keyID string, createdAt time.Time) *FakeAccessKey {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := f.user(user)
	if u == nil {
		panic("fakes: unknown user " + user)
	}
	k := &FakeAccessKey{ID: keyID, Secret: "secret-" + keyID, CreatedAt: createdAt, Status: types.StatusTypeActive}
	u.Keys = append(u.Keys, k)
	return k
}

// Key returns the key with the given id, or nil.
func (f *FakeIAMClient) Key(user, keyID string) *FakeAccessKey {
	f.mu.Lock()
	defer f.mu.Unlock()

	if u := f.user(user); u != nil {
		for _, k := range u.Keys {
			if k.ID == keyID {
				return k
			}
		}
	}
	return nil
}

// KeyCount returns how many keys the user has.
func (f *FakeIAMClient) KeyCount(user string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if u := f.user(user); u != nil {
		return len(u.Keys)
	}
	return 0
}

func (f *FakeIAMClient) user(name string) *FakeUser {
	for _, u := range f.Users {
		if u.Name == name {
			return u
		}
	}
	return nil
}

func (f *FakeIAMClient) noSuchUser(name string) error {
	return &types.NoSuchEntityException{Message: aws.String(fmt.Sprintf("The user with name %s cannot be found.", name))}
}

// ListUsers mocks the ListUsers operation. Markers are user indexes.
func (f *FakeIAMClient) ListUsers(ctx context.Context, params *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errors["ListUsers"]; err != nil {
		return nil, err
	}

	start := 0
	if params.Marker != nil {
		fmt.Sscanf(*params.Marker, "%d", &start)
	}
	end := len(f.Users)
	if f.PageSize > 0 && start+f.PageSize < end {
		end = start + f.PageSize
	}

	out := &iam.ListUsersOutput{}
	for _, u := range f.Users[start:end] {
		out.Users = append(out.Users, types.User{UserName: aws.String(u.Name)})
	}
	if end < len(f.Users) {
		out.IsTruncated = true
		out.Marker = aws.String(fmt.Sprintf("%d", end))
	}
	return out, nil
}

// ListUserTags mocks the ListUserTags operation.
func (f *FakeIAMClient) ListUserTags(ctx context.Context, params *iam.ListUserTagsInput, optFns ...func(*iam.Options)) (*iam.ListUserTagsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errors["ListUserTags"]; err != nil {
		return nil, err
	}
	u := f.user(aws.ToString(params.UserName))
	if u == nil {
		return nil, f.noSuchUser(aws.ToString(params.UserName))
	}

	out := &iam.ListUserTagsOutput{}
	for k, v := range u.Tags {
		out.Tags = append(out.Tags, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out, nil
}

// ListAccessKeys mocks the ListAccessKeys operation.
func (f *FakeIAMClient) ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errors["ListAccessKeys"]; err != nil {
		return nil, err
	}
	u := f.user(aws.ToString(params.UserName))
	if u == nil {
		return nil, f.noSuchUser(aws.ToString(params.UserName))
	}

	out := &iam.ListAccessKeysOutput{}
	for _, k := range u.Keys {
		out.AccessKeyMetadata = append(out.AccessKeyMetadata, types.AccessKeyMetadata{
			AccessKeyId: aws.String(k.ID),
			CreateDate:  aws.Time(k.CreatedAt),
			Status:      k.Status,
			UserName:    aws.String(u.Name),
		})
	}
	return out, nil
}

// GetAccessKeyLastUsed mocks the GetAccessKeyLastUsed operation.
func (f *FakeIAMClient) GetAccessKeyLastUsed(ctx context.Context, params *iam.GetAccessKeyLastUsedInput, optFns ...func(*iam.Options)) (*iam.GetAccessKeyLastUsedOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errors["GetAccessKeyLastUsed"]; err != nil {
		return nil, err
	}

	for _, u := range f.Users {
		for _, k := range u.Keys {
			if k.ID != aws.ToString(params.AccessKeyId) {
				continue
			}
			lastUsed := &types.AccessKeyLastUsed{Region: aws.String("N/A"), ServiceName: aws.String("N/A")}
			if k.LastUsed != nil {
				lastUsed.LastUsedDate = aws.Time(*k.LastUsed)
				lastUsed.Region = aws.String("us-east-1")
				lastUsed.ServiceName = aws.String("s3")
			}
			return &iam.GetAccessKeyLastUsedOutput{UserName: aws.String(u.Name), AccessKeyLastUsed: lastUsed}, nil
		}
	}
	return nil, &types.NoSuchEntityException{Message: aws.String("The Access Key with id " + aws.ToString(params.AccessKeyId) + " cannot be found")}
}

// CreateAccessKey mocks the CreateAccessKey operation, enforcing the two-key limit.
func (f *FakeIAMClient) CreateAccessKey(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errors["CreateAccessKey"]; err != nil {
		return nil, err
	}
	name := aws.ToString(params.UserName)
	u := f.user(name)
	if u == nil {
		return nil, f.noSuchUser(name)
	}
	if len(u.Keys) >= 2 {
		return nil, &types.LimitExceededException{Message: aws.String("Cannot exceed quota for AccessKeysPerUser: 2")}
	}

	now := time.Now()
	if f.Now != nil {
		now = f.Now()
	}
	f.nextKey++
	k := &FakeAccessKey{
		ID:        fmt.Sprintf("AKIANEW%08d", f.nextKey),
		Secret:    fmt.Sprintf("new-secret-%08d", f.nextKey),
		CreatedAt: now,
		Status:    types.StatusTypeActive,
	}
	u.Keys = append(u.Keys, k)
	f.Calls = append(f.Calls, "CreateAccessKey:"+name+":"+k.ID)

	return &iam.CreateAccessKeyOutput{AccessKey: &types.AccessKey{
		AccessKeyId:     aws.String(k.ID),
		SecretAccessKey: aws.String(k.Secret),
		CreateDate:      aws.Time(k.CreatedAt),
		Status:          k.Status,
		UserName:        aws.String(name),
	}}, nil
}

// UpdateAccessKey mocks the UpdateAccessKey operation.
func (f *FakeIAMClient) UpdateAccessKey(ctx context.Context, params *iam.UpdateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.UpdateAccessKeyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errors["UpdateAccessKey"]; err != nil {
		return nil, err
	}
	name := aws.ToString(params.UserName)
	u := f.user(name)
	if u == nil {
		return nil, f.noSuchUser(name)
	}
	for _, k := range u.Keys {
		if k.ID == aws.ToString(params.AccessKeyId) {
			k.Status = params.Status
			f.Calls = append(f.Calls, fmt.Sprintf("UpdateAccessKey:%s:%s:%s", name, k.ID, params.Status))
			return &iam.UpdateAccessKeyOutput{}, nil
		}
	}
	return nil, &types.NoSuchEntityException{Message: aws.String("The Access Key with id " + aws.ToString(params.AccessKeyId) + " cannot be found")}
}

// DeleteAccessKey mocks the DeleteAccessKey operation.
func (f *FakeIAMClient) DeleteAccessKey(ctx context.Context, params *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errors["DeleteAccessKey"]; err != nil {
		return nil, err
	}
	name := aws.ToString(params.UserName)
	u := f.user(name)
	if u == nil {
		return nil, f.noSuchUser(name)
	}
	for i, k := range u.Keys {
		if k.ID == aws.ToString(params.AccessKeyId) {
			u.Keys = append(u.Keys[:i], u.Keys[i+1:]...)
			f.Calls = append(f.Calls, "DeleteAccessKey:"+name+":"+k.ID)
			return &iam.DeleteAccessKeyOutput{}, nil
		}
	}
	return nil, &types.NoSuchEntityException{Message: aws.String("The Access Key with id " + aws.ToString(params.AccessKeyId) + " cannot be found")}
}
