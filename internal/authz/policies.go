package authz

// defaultPolicies check principal.grantedActions, which the middleware fills
// from the scope mapping, so renaming scopes never requires new policies.
const defaultPolicies = `
permit(
  principal,
  action == Stageload::Action::"read",
  resource
) when {
  principal.grantedActions.contains("read")
};

permit(
  principal,
  action == Stageload::Action::"run",
  resource
) when {
  principal.grantedActions.contains("run")
};

permit(
  principal,
  action == Stageload::Action::"admin",
  resource
) when {
  principal.grantedActions.contains("admin")
};
`
