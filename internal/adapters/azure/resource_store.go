package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/joshdcar/spring-clean-resource-cleanup/internal/domain"
)

// ResourceGroupStore implements domain.ResourceStore against the Azure
// Resource Manager API. Tag state lives on the resource groups themselves;
// participation is selected with a tag filter on the list call.
type ResourceGroupStore struct {
	client *armresources.ResourceGroupsClient
	// tagValue is the marker value the participation tag must carry.
	tagValue string
}

func NewResourceGroupStore(subscriptionID, tagValue string) (*ResourceGroupStore, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	client, err := armresources.NewResourceGroupsClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("resource groups client: %w", err)
	}
	return &ResourceGroupStore{client: client, tagValue: tagValue}, nil
}

func (s *ResourceGroupStore) ListExpirable(ctx context.Context) ([]domain.ResourceRecord, error) {
	filter := fmt.Sprintf("tagName eq '%s' and tagValue eq '%s'", domain.TagParticipation, s.tagValue)
	pager := s.client.NewListPager(&armresources.ResourceGroupsClientListOptions{Filter: &filter})

	var records []domain.ResourceRecord
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list resource groups: %w", err)
		}
		for _, group := range page.Value {
			if group.Name == nil {
				continue
			}
			records = append(records, domain.ResourceRecord{
				Name: *group.Name,
				Tags: fromTagMap(group.Tags),
			})
		}
	}
	return records, nil
}

func (s *ResourceGroupStore) GetExpiration(ctx context.Context, resourceGroup string) (time.Time, error) {
	resp, err := s.client.Get(ctx, resourceGroup, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("get resource group %s: %w", resourceGroup, mapNotFound(err))
	}
	raw, ok := fromTagMap(resp.Tags)[domain.TagExpiration]
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("resource group %s: %w", resourceGroup, domain.ErrNoExpirationTag)
	}
	expires, err := domain.ParseExpiration(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("resource group %s: %w", resourceGroup, err)
	}
	return expires, nil
}

func (s *ResourceGroupStore) UpdateExpiration(ctx context.Context, resourceGroup string, expires time.Time) error {
	resp, err := s.client.Get(ctx, resourceGroup, nil)
	if err != nil {
		return fmt.Errorf("get resource group %s: %w", resourceGroup, mapNotFound(err))
	}

	tags := resp.Tags
	if tags == nil {
		tags = map[string]*string{}
	}
	tags[domain.TagExpiration] = to.Ptr(domain.FormatExpiration(expires))

	// Patch only the tags; CreateOrUpdate would race other properties.
	_, err = s.client.Update(ctx, resourceGroup, armresources.ResourceGroupPatchable{Tags: tags}, nil)
	if err != nil {
		return fmt.Errorf("update resource group %s tags: %w", resourceGroup, err)
	}
	return nil
}

func (s *ResourceGroupStore) Delete(ctx context.Context, resourceGroup string) error {
	// Deletion is long-running on the ARM side; having begun it is success
	// and completion is not awaited.
	_, err := s.client.BeginDelete(ctx, resourceGroup, nil)
	if err != nil {
		return fmt.Errorf("begin delete resource group %s: %w", resourceGroup, mapNotFound(err))
	}
	return nil
}

// mapNotFound turns an ARM 404 into domain.ErrResourceNotFound so callers
// can tell a vanished resource group from a transport failure. Other errors
// pass through unchanged.
func mapNotFound(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return domain.ErrResourceNotFound
	}
	return err
}

func fromTagMap(tags map[string]*string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}
